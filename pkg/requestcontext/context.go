// Package requestcontext carries per-request identity through context: who is
// calling (tenant, user) and how the request arrived. The merge engine reads
// the user fields to attribute replayed changes in the production audit log.
package requestcontext

import "context"

type key int

const (
	keyRequestID key = iota
	keyMethod
	keyRoute
	keyRemoteIP
	keyTenantID
	keyUserID
	keyUserName
)

func set(ctx context.Context, k key, value string) context.Context {
	return context.WithValue(ctx, k, value)
}

func get(ctx context.Context, k key) string {
	value, _ := ctx.Value(k).(string)
	return value
}

func SetRequestID(ctx context.Context, requestID string) context.Context {
	return set(ctx, keyRequestID, requestID)
}

func GetRequestID(ctx context.Context) string { return get(ctx, keyRequestID) }

func SetMethod(ctx context.Context, method string) context.Context {
	return set(ctx, keyMethod, method)
}

func GetMethod(ctx context.Context) string { return get(ctx, keyMethod) }

func SetRoute(ctx context.Context, route string) context.Context {
	return set(ctx, keyRoute, route)
}

func GetRoute(ctx context.Context) string { return get(ctx, keyRoute) }

func SetRemoteIP(ctx context.Context, remoteIP string) context.Context {
	return set(ctx, keyRemoteIP, remoteIP)
}

func GetRemoteIP(ctx context.Context) string { return get(ctx, keyRemoteIP) }

// SetTenantID stores the tenant environment id the request is scoped to.
func SetTenantID(ctx context.Context, tenantID string) context.Context {
	return set(ctx, keyTenantID, tenantID)
}

func GetTenantID(ctx context.Context) string { return get(ctx, keyTenantID) }

func SetUserID(ctx context.Context, userID string) context.Context {
	return set(ctx, keyUserID, userID)
}

func GetUserID(ctx context.Context) string { return get(ctx, keyUserID) }

// SetUserName stores the display name of the authenticated user.
func SetUserName(ctx context.Context, userName string) context.Context {
	return set(ctx, keyUserName, userName)
}

func GetUserName(ctx context.Context) string { return get(ctx, keyUserName) }
