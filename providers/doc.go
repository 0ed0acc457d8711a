// Package providers groups the built-in custodian implementations.
//
// Each custodian lives in its own subpackage (uphold, gemini, bitflyer)
// built on typed endpoint contracts; factory helpers for composition
// roots live in the module root package.
package providers
