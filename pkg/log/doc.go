// Package log is a small wrapper around the standard library logger that
// hands out named, per-component loggers.
//
//	l := log.ForService("fallback")
//	l.Infof("loaded %d index entries", n)
//	l.Debugf("skipped %s: %s", loc, reason) // only with debug enabled
//
// Debug output can be enabled for everything (SetGlobalDebug, wired to the
// --debug flag) or for a single component (EnableDebugFor). Tests redirect
// output with SetOutput and assert on the buffer.
//
// The package name collides with the standard library; alias one of them
// when both are needed.
package log
