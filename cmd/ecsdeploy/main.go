package main

import "os"

func main() {
	root := newRoot(os.Stdout, os.Stderr)
	os.Exit(root.Execute(os.Args[1:]))
}
