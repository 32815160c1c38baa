// Package httpapi is the HTTP surface of authstate: the JSON auth endpoints
// under /api/auth and the cookie-backed page routes guarded by the route
// authorizer.
//
// Every JSON answer uses the same envelope:
//
//	{"code":200,"message":"...","data":{"list":...,"pagination":{...}},"success":true,"timestamp":"..."}
//
// Failures carry the HTTP status in code, a null list and an empty page.
//
// # What this package must NOT do
//
//   - Decide authorization itself. Page access goes through route.Authorizer.
//   - Echo internal error causes to callers.
package httpapi
