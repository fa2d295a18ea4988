package main

import "github.com/arya-analytics/wayhistory/cmd"

func main() { cmd.Execute() }
