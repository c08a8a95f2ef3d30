// Command fixtured serves browser test fixtures from a manifest and waits
// for browser downloads to finish.
package main

func main() {
	Execute()
}
