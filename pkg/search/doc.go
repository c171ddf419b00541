// Package search is the single entry point for company lookups.
//
// # Overview
//
// A Service combines the anonymous quota (package ratelimit) with an ordered
// list of backends. Each backend is a Strategy:
//
//	type Strategy interface {
//		Name() string
//		Available(ctx context.Context) bool
//		Search(ctx context.Context, query string) ([]record.Record, error)
//	}
//
// The structured store (package storage) comes first and the file-based
// engine (package fallback) second. For every query the service runs the
// first strategy that reports itself available; results from different
// backends are never merged.
//
// # Policy
//
//   - A query shorter than two characters after trimming returns an empty
//     response at once. The quota is not charged and no backend is touched.
//   - Anonymous callers are counted by address. Over the limit the response
//     carries a *QuotaError (errors.Is(err, ErrQuotaExceeded)) and
//     Remaining is 0.
//   - Authenticated callers are never counted; Remaining is Unlimited.
//   - A backend error is logged and treated as "no results". It is not
//     retried and no other backend is tried.
//
// # Usage
//
//	svc := search.NewService(gate, sqliteStore, fileEngine)
//	resp := svc.Search(ctx, search.Request{Query: "acme", Address: ip})
//	if errors.Is(resp.Err, search.ErrQuotaExceeded) {
//		// tell the caller to log in
//	}
package search
