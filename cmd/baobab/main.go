// Command baobab runs the news processing service and its pipeline
// triggers.
package main

import "baobab/cmd/cmd"

func main() {
	cmd.Execute()
}
