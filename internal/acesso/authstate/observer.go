// Package authstate logs identity transitions reported by the auth client.
package authstate

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"finitefield.org/acesso/internal/acesso/authclient"
)

// Observer holds the process-wide logged-in flag. It never touches form state.
type Observer struct {
	logger   *zap.Logger
	loggedIn atomic.Bool
	email    atomic.Value

	closeOnce   sync.Once
	unsubscribe authclient.Unsubscribe
}

// Register subscribes to client state changes. The client delivers the current state
// immediately, so the flag is accurate once Register returns.
func Register(client authclient.Client, logger *zap.Logger) *Observer {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Observer{logger: logger.Named("authstate")}
	o.email.Store("")
	if client == nil {
		o.logger.Warn("auth client not configured; state observer inactive")
		o.unsubscribe = func() {}
		return o
	}
	o.unsubscribe = client.ObserveAuthState(o.handle)
	return o
}

func (o *Observer) handle(sess *authclient.Session) {
	if sess == nil {
		o.loggedIn.Store(false)
		o.email.Store("")
		o.logger.Info("no user logged in")
		return
	}
	o.loggedIn.Store(true)
	o.email.Store(sess.Email)
	o.logger.Info("user logged in", zap.String("email", sess.Email), zap.String("uid", sess.UID))
}

// LoggedIn reports whether the last observed state carried a session.
func (o *Observer) LoggedIn() bool {
	return o.loggedIn.Load()
}

// Email returns the email of the signed-in user, or "".
func (o *Observer) Email() string {
	email, _ := o.email.Load().(string)
	return email
}

// Close detaches the observer. It is safe to call more than once.
func (o *Observer) Close() {
	o.closeOnce.Do(func() {
		if o.unsubscribe != nil {
			o.unsubscribe()
		}
	})
}
