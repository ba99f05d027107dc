package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

func smells(m dsl.Matcher) {
	// Consecutive guards with the same return can be merged with ||.
	m.Match(`if $c1 { return $ret }; if $c2 { return $ret }`).
		Report(`two consecutive guards return the same value; consider merging conditions with ||`).
		Suggest(`if $c1 || $c2 { return $ret }`)

	m.Match(`if $c1 { continue }; if $c2 { continue }`).
		Report(`two consecutive continues; consider merging conditions with ||`).
		Suggest(`if $c1 || $c2 { continue }`)

	m.Match(`for $*_ { for $*_ { $*_ } }`).
		Report(`nested for-loop; consider extracting inner loop logic or reducing algorithmic complexity`)
}

// jobs covers the worker and broker code paths.
func jobs(m dsl.Matcher) {
	// Provider calls need a deadline; the shared client has none.
	m.Match(`http.DefaultClient`, `http.Get($*_)`, `http.Post($*_)`).
		Where(!m.File().Name.Matches(`_test\.go$`)).
		Report(`use a provider-owned *http.Client with a timeout`)

	// KEYS blocks Redis; job lookups go through known keys.
	m.Match(`$c.Keys($ctx, $pattern)`).
		Where(m["c"].Type.Is(`*redis.Client`) && !m.File().Name.Matches(`_test\.go$`)).
		Report(`avoid KEYS on the broker; address jobs by id`)

	m.Match(`time.Sleep($d)`).
		Where(m.File().PkgPath.Matches(`internal/domain/job`) && !m.File().Name.Matches(`_test\.go$`)).
		Report(`workers must stay cancellable; wait on a context or timer instead of sleeping`)

	// A terminal status write must not be dropped by a cancelled request context.
	m.Match(`$s.Finish(context.Background(), $*_)`).
		Where(!m.File().Name.Matches(`_test\.go$`)).
		Report(`derive the context with context.WithoutCancel so request values survive`)
}
