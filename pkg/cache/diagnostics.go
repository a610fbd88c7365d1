package cache

// Tag identifies a caching decision in the structured logs. The set is
// fixed; tests observe tags through the middleware diagnostic hook.
type Tag string

const (
	// Serve path
	GatewayTimeoutServed                Tag = "GatewayTimeoutServed"
	NoResponseServed                    Tag = "NoResponseServed"
	CachedResponseServed                Tag = "CachedResponseServed"
	NotModifiedServed                   Tag = "NotModifiedServed"
	NotModifiedIfNoneMatchStar          Tag = "NotModifiedIfNoneMatchStar"
	NotModifiedIfNoneMatchMatched       Tag = "NotModifiedIfNoneMatchMatched"
	NotModifiedIfUnmodifiedSinceSatisfied Tag = "NotModifiedIfUnmodifiedSinceSatisfied"

	// Store path
	VaryByRulesUpdated                     Tag = "VaryByRulesUpdated"
	ResponseCached                         Tag = "ResponseCached"
	ResponseNotCached                      Tag = "ResponseNotCached"
	ResponseContentLengthMismatchNotCached Tag = "ResponseContentLengthMismatchNotCached"

	// Request ineligibility reasons
	RequestMethodNotCacheable            Tag = "RequestMethodNotCacheable"
	RequestWithAuthorizationNotCacheable Tag = "RequestWithAuthorizationNotCacheable"
	RequestWithNoCacheNotCacheable       Tag = "RequestWithNoCacheNotCacheable"
	RequestWithPragmaNoCacheNotCacheable Tag = "RequestWithPragmaNoCacheNotCacheable"

	// Response ineligibility reasons
	ResponseWithoutPublicNotCacheable  Tag = "ResponseWithoutPublicNotCacheable"
	ResponseWithNoStoreNotCacheable    Tag = "ResponseWithNoStoreNotCacheable"
	ResponseWithNoCacheNotCacheable    Tag = "ResponseWithNoCacheNotCacheable"
	ResponseWithSetCookieNotCacheable  Tag = "ResponseWithSetCookieNotCacheable"
	ResponseWithVaryStarNotCacheable   Tag = "ResponseWithVaryStarNotCacheable"
	ResponseWithPrivateNotCacheable    Tag = "ResponseWithPrivateNotCacheable"
	ResponseWithUnsuccessfulStatusCode Tag = "ResponseWithUnsuccessfulStatusCode"

	// Expiration reasons
	ExpirationExpiresExceeded      Tag = "ExpirationExpiresExceeded"
	ExpirationSharedMaxAgeExceeded Tag = "ExpirationSharedMaxAgeExceeded"
	ExpirationMaxAgeExceeded       Tag = "ExpirationMaxAgeExceeded"
	ExpirationMustRevalidate       Tag = "ExpirationMustRevalidate"
	ExpirationMaxStaleSatisfied    Tag = "ExpirationMaxStaleSatisfied"
)
