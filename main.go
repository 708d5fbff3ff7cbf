package main

import "github.com/gregriff/vogo/relay/cmd"

func main() {
	cmd.Execute()
}
