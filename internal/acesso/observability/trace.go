package observability

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const cloudTraceHeader = "X-Cloud-Trace-Context"

var tracer = otel.Tracer("finitefield.org/acesso/internal/acesso/observability")

// TraceInfo is the trace metadata propagated through the request context.
type TraceInfo struct {
	TraceID   string
	SpanID    string
	Sampled   bool
	ProjectID string
}

type traceKey struct{}

// WithTrace stores info on ctx.
func WithTrace(ctx context.Context, info TraceInfo) context.Context {
	return context.WithValue(ctx, traceKey{}, info)
}

// TraceFromContext returns the trace metadata stored by TraceMiddleware.
func TraceFromContext(ctx context.Context) (TraceInfo, bool) {
	if ctx == nil {
		return TraceInfo{}, false
	}
	info, ok := ctx.Value(traceKey{}).(TraceInfo)
	return info, ok
}

// TraceMiddleware continues a Cloud Trace context when one is supplied, starts a server span
// and stores the trace metadata on the request context.
func TraceMiddleware(projectID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			info, remote, ok := parseCloudTraceContext(r.Header.Get(cloudTraceHeader))
			if ok {
				ctx = trace.ContextWithRemoteSpanContext(ctx, remote)
			}

			ctx, span := tracer.Start(ctx, spanNameFromRequest(r), trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()
			span.SetAttributes(standardSpanAttributes(r)...)

			if spanCtx := span.SpanContext(); spanCtx.IsValid() {
				info.TraceID = spanCtx.TraceID().String()
				info.SpanID = spanCtx.SpanID().String()
				info.Sampled = spanCtx.IsSampled()
			}
			info.ProjectID = projectID

			if formatted := formatCloudTraceHeader(info); formatted != "" {
				w.Header().Set(cloudTraceHeader, formatted)
			}

			next.ServeHTTP(w, r.WithContext(WithTrace(ctx, info)))
		})
	}
}

func parseCloudTraceContext(header string) (TraceInfo, trace.SpanContext, bool) {
	header = strings.TrimSpace(header)
	traceHex, spanPart, found := strings.Cut(header, "/")
	if !found {
		return TraceInfo{}, trace.SpanContext{}, false
	}

	traceHex = strings.TrimSpace(traceHex)
	if len(traceHex) != 32 {
		return TraceInfo{}, trace.SpanContext{}, false
	}
	traceID, err := trace.TraceIDFromHex(traceHex)
	if err != nil {
		return TraceInfo{}, trace.SpanContext{}, false
	}

	spanPart, options, _ := strings.Cut(spanPart, ";")
	spanID, ok := parseSpanID(spanPart)
	if !ok {
		return TraceInfo{}, trace.SpanContext{}, false
	}

	sampled := parseTraceOptions(options)
	var flags trace.TraceFlags
	if sampled {
		flags = trace.FlagsSampled
	}

	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: flags,
		Remote:     true,
	})
	return TraceInfo{
		TraceID: traceID.String(),
		SpanID:  spanID.String(),
		Sampled: sampled,
	}, spanCtx, true
}

// parseSpanID accepts the hex form and the decimal form Cloud Trace emits.
func parseSpanID(value string) (trace.SpanID, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return trace.SpanID{}, false
	}

	if len(value) <= 16 && isHex(value) {
		padded := strings.Repeat("0", 16-len(value)) + value
		if spanID, err := trace.SpanIDFromHex(padded); err == nil {
			return spanID, true
		}
	}

	if num, err := strconv.ParseUint(value, 10, 64); err == nil {
		var spanID trace.SpanID
		binary.BigEndian.PutUint64(spanID[:], num)
		if spanID.IsValid() {
			return spanID, true
		}
	}
	return trace.SpanID{}, false
}

func parseTraceOptions(options string) bool {
	for _, segment := range strings.Split(options, ";") {
		segment = strings.TrimSpace(segment)
		if strings.HasPrefix(segment, "o=") {
			return segment == "o=1"
		}
	}
	return false
}

func isHex(value string) bool {
	if len(value)%2 == 1 {
		value = "0" + value
	}
	_, err := hex.DecodeString(value)
	return err == nil
}

func formatCloudTraceHeader(info TraceInfo) string {
	if info.TraceID == "" || info.SpanID == "" {
		return ""
	}
	option := "0"
	if info.Sampled {
		option = "1"
	}
	return fmt.Sprintf("%s/%s;o=%s", info.TraceID, info.SpanID, option)
}

func loggingTraceResource(info TraceInfo) string {
	if info.ProjectID == "" || info.TraceID == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/traces/%s", info.ProjectID, info.TraceID)
}

func spanNameFromRequest(r *http.Request) string {
	p := r.URL.Path
	if p == "" {
		p = "/"
	}
	return r.Method + " " + SanitizeRoute(p)
}

func standardSpanAttributes(r *http.Request) []attribute.KeyValue {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	attrs := []attribute.KeyValue{
		attribute.String("http.request.method", SanitizeMethod(r.Method)),
		attribute.String("url.scheme", scheme),
		attribute.String("url.path", SanitizeRoute(r.URL.Path)),
	}
	if r.Host != "" {
		attrs = append(attrs, attribute.String("server.address", r.Host))
	}
	if ua := r.UserAgent(); ua != "" {
		attrs = append(attrs, attribute.String("user_agent.original", sanitizeString(ua, 0)))
	}
	return attrs
}

func setSpanStatus(span trace.Span, route string, status int) {
	span.SetAttributes(
		attribute.String("http.route", route),
		attribute.Int("http.response.status_code", status),
	)
	if status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(status))
		return
	}
	span.SetStatus(codes.Ok, http.StatusText(status))
}
