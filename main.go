package main

import "github.com/fakeyudi/droidrec/cmd"

func main() {
	cmd.Execute()
}
