// Package test holds integration tests that run the engine, the SQLite
// directory and Redis browser records together. Run them with
//
//	go test -tags integration ./test/...
package test
