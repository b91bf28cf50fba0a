package main

import (
	"flag"
	"fmt"
	"log"
	"token_faucet/internal/pkg/config"
	"token_faucet/pkg/utils"
)

// 给运维签发管理端 JWT，用于 /admin/codes 接口
func main() {
	subject := flag.String("subject", "ops", "token subject (who this token is for)")
	flag.Parse()

	config.LoadConfig()

	token, expireAt, err := utils.GenerateToken(*subject, utils.RoleAdmin)
	if err != nil {
		log.Fatalf("Failed to generate token: %v", err)
	}

	fmt.Printf("Token:   %s\n", token)
	fmt.Printf("Expires: %s\n", expireAt.Format("2006-01-02 15:04:05"))
}
