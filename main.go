package main

import "github.com/ssokit/ssoapi/cmd"

func main() {
	cmd.Execute()
}
