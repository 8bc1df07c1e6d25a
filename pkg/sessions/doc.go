// Package sessions stores one row per issued bearer token. A token is only
// accepted while its session row exists and has not expired, so deleting
// the row at logout revokes the token before its signature expires.
package sessions
