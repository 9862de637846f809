package main

import "github.com/jmehdipour/notifications-delivery/cmd"

func main() {
	cmd.Execute()
}
