package main

import "github.com/giovaniif/vending-machine/cmd/api"

func main() {
	api.StartServer()
}
