package audit

import (
	"context"
	"net/http"
	"strings"
)

type contextKey int

const (
	metaKey contextKey = iota
	actorKey
)

// WithMeta attaches request metadata to ctx.
func WithMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, metaKey, meta)
}

// MetaFromContext returns the request metadata captured by Middleware, or a
// zero value when none was attached.
func MetaFromContext(ctx context.Context) RequestMeta {
	meta, _ := ctx.Value(metaKey).(RequestMeta)
	return meta
}

// WithActor attaches the authenticated actor id to ctx.
func WithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorKey, actorID)
}

// ActorFromContext returns the authenticated actor id, empty when the
// request was anonymous.
func ActorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(actorKey).(string)
	return actor
}

// Middleware snapshots the request headers the audit trail records: client
// address, edge-proxy geo hints, user agent, referer, and accept-language.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		meta := RequestMeta{
			IPAddress:      clientIP(r),
			GeoCity:        r.Header.Get("X-Vercel-Ip-City"),
			GeoCountry:     r.Header.Get("X-Vercel-Ip-Country"),
			GeoRegion:      r.Header.Get("X-Vercel-Ip-Country-Region"),
			GeoEdgeRegion:  r.Header.Get("X-Vercel-Edge-Region"),
			GeoLatitude:    r.Header.Get("X-Vercel-Ip-Latitude"),
			GeoLongitude:   r.Header.Get("X-Vercel-Ip-Longitude"),
			GeoPostalCode:  r.Header.Get("X-Vercel-Ip-Postal-Code"),
			UserAgent:      r.UserAgent(),
			Referer:        r.Referer(),
			AcceptLanguage: r.Header.Get("Accept-Language"),
		}
		meta.GeoCountryFlag = countryFlag(meta.GeoCountry)

		next.ServeHTTP(w, r.WithContext(WithMeta(r.Context(), meta)))
	})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.IndexByte(fwd, ','); idx >= 0 {
			fwd = fwd[:idx]
		}
		return strings.TrimSpace(fwd)
	}
	return r.RemoteAddr
}

// countryFlag maps an ISO 3166-1 alpha-2 code to its regional-indicator
// emoji pair.
func countryFlag(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 2 || code[0] < 'A' || code[0] > 'Z' || code[1] < 'A' || code[1] > 'Z' {
		return ""
	}
	return string([]rune{
		rune(0x1F1E6 + int(code[0]-'A')),
		rune(0x1F1E6 + int(code[1]-'A')),
	})
}
