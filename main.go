package main

import "eventstaff-backend/cmd"

func main() {
	cmd.Run()
}
