// Package resilience provides reliability and fault tolerance patterns for
// calls to the social platform API and the response generator.
//
// The package supports:
//   - Circuit breakers keyed by remote service name
//   - Retry logic with exponential backoff and jitter
//
// Usage Example:
//
//	cb := registry.GetOrCreate("social-api")
//	result, err := cb.Execute(func() (interface{}, error) {
//	    return callExternalService()
//	})
//
//	err := retry.WithBackoff(ctx, retry.DefaultConfig(), func() error {
//	    return performOperation()
//	})
package resilience
