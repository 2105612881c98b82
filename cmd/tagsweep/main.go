// tagsweep - Cloud Resource Ownership Sweeper
// Enumerate. Resolve. Upsert.
package main

func main() {
	Execute()
}
