package main

import "fmt"

type server struct {
	port int
}

func main() {
	s := &server{port: 8080}
	if s.port > 0 {
		fmt.Println("serving")
	}
}
