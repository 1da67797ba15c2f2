// Package shared holds helpers used by more than one tabstat package.
//
// The testutil subpackage provides a buffered slog handler for asserting on
// log output and fixture writers that lay down small CSV tables in a test's
// temporary directory.
//
//	func TestLoad(t *testing.T) {
//	    path := testutil.WriteTable(t, [][]string{{"a", "b"}, {"1", "2"}})
//	    tbl, err := table.Load(ctx, path, table.Options{})
//	    ...
//	}
//
// Nothing here should carry domain logic or depend on other internal packages.
package shared
