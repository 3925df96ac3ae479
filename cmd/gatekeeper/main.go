package main

import "github.com/joho/godotenv"

func main() {
	// Optional .env for local runs; deployments set the environment directly.
	_ = godotenv.Load()
	Execute()
}
