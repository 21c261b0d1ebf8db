package main

import (
	cfg "pondserv/src/configuration"
	server "pondserv/src/server"
)

func main() {
	config := cfg.ReadProperties()
	server.RunServer(config)
}
