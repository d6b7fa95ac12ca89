// Package test provides infrastructure for integration testing the xcrape
// client against a fake scraping backend.
//
// The package provides:
//
//   - Suite: a complete setup with a SQLite jobs table, a fiber backend served
//     over HTTP, the real API client and the sync stack (store, scheduler,
//     session, dispatcher) wired the way the dashboard wires it
//
//   - Backend: a scraping backend that never scrapes; tests move jobs between
//     states with Complete, Fail and SetStatus
//
// Example Usage:
//
//	func TestExample(t *testing.T) {
//	    env := test.NewSuite(t)
//	    defer env.Cleanup()
//
//	    id, _ := env.Backend.Create("https://example.com", nil)
//	    env.Refresh()
//	    job, _ := env.Store.Get(id)
//	}
package test
