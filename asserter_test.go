// asserter_test.go -- tiny assert helper shared by this package's tests
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.

package lshcache

import "testing"

// newAsserter returns a closure that fails the test with a formatted
// message when cond is false, the same shape the teacher project's own
// test suite uses instead of pulling in a third-party assertion library.
func newAsserter(t *testing.T) func(cond bool, format string, args ...interface{}) {
	t.Helper()
	return func(cond bool, format string, args ...interface{}) {
		t.Helper()
		if !cond {
			t.Fatalf(format, args...)
		}
	}
}
