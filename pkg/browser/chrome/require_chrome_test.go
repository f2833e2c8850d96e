//go:build chrome

package chrome

func init() {
	requireChrome = true
}
