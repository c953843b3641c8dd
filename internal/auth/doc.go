// Package auth authenticates the show operator.
//
// showctl has a single operator account defined in configuration: a
// username and an Argon2id PHC hash (generate one with "showctl
// hash-password"). A successful login yields a short-lived HS256 JWT that
// the API checks on every protected route. Browsers that cannot set
// headers on a WebSocket upgrade exchange the JWT for a single-use ticket
// first.
package auth
