package main

import "github.com/motongxue/stopAndWaitTransfer/cmd"

func main() {
	cmd.Execute()
}
