// Package providers contains built-in provider implementations and factories.
//
// See docs/identity_profiles.md for identity profile resolution and Google
// identity-scope opt-out configuration.
package providers
