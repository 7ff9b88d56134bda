package httpserver

import (
	"go.uber.org/zap"

	"finitefield.org/acesso/internal/acesso/authform"
	"finitefield.org/acesso/internal/acesso/reactive"
)

// formBinding keeps a render state in sync with the controller cells for the lifetime of one
// request. The password cell is never bound.
type formBinding struct {
	state  authform.FormState
	logger *zap.Logger
	unsubs []reactive.Unsubscribe
}

func bindForm(c *authform.Controller, logger *zap.Logger) *formBinding {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &formBinding{logger: logger}
	snapshot := c.Snapshot()
	b.state.Email = snapshot.Email
	b.state.ErrorMessage = snapshot.ErrorMessage
	b.state.IsLoading = snapshot.IsLoading

	b.unsubs = append(b.unsubs,
		c.Email().Subscribe(func(v string) {
			b.state.Email = v
		}),
		c.ErrorMessage().Subscribe(func(v *string) {
			if v == nil {
				b.state.ErrorMessage = nil
				return
			}
			copied := *v
			b.state.ErrorMessage = &copied
		}),
		c.Loading().Subscribe(func(v bool) {
			b.state.IsLoading = v
			b.logger.Debug("form loading changed", zap.Bool("loading", v))
		}),
	)
	return b
}

// Close detaches from the controller and returns the last observed state.
func (b *formBinding) Close() authform.FormState {
	for _, unsub := range b.unsubs {
		unsub()
	}
	b.unsubs = nil
	return b.state
}
