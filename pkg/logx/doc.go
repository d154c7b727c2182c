// Package logx wraps zerolog behind a small, swap-safe logging service.
//
// Components hold a Logger value; the Service can re-apply sink/level config
// at runtime (config hot reload) without invalidating loggers already handed
// out.
package logx
