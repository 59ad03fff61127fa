package webdrivertest

import "context"

type bodyKey struct{}

func withBody(ctx context.Context, body map[string]interface{}) context.Context {
	return context.WithValue(ctx, bodyKey{}, body)
}

// bodyFrom returns the decoded JSON body captured by the recorder. Handlers
// cannot re-read r.Body once it has been consumed.
func bodyFrom(ctx context.Context) map[string]interface{} {
	body, _ := ctx.Value(bodyKey{}).(map[string]interface{})
	if body == nil {
		return map[string]interface{}{}
	}
	return body
}
