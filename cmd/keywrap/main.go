package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"token_faucet/internal/pkg/keystore"
)

// 把明文私钥封装成 salt:iv:cipher 格式的加密 blob，
// 输出结果配置到 keystore.encrypted.blob（或 FAUCET_ENCRYPTED_KEY）
func main() {
	password := flag.String("password", "", "encryption password (prompted if empty)")
	flag.Parse()

	reader := bufio.NewReader(os.Stdin)

	fmt.Print("Private key (hex): ")
	key, err := reader.ReadString('\n')
	if err != nil {
		log.Fatal(err)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		log.Fatal("private key is required")
	}

	pw := *password
	if pw == "" {
		fmt.Print("Password: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			log.Fatal(err)
		}
		pw = strings.TrimSpace(line)
	}
	if pw == "" {
		log.Fatal("password is required")
	}

	blob, err := keystore.EncryptKeyBlob([]byte(key), pw)
	if err != nil {
		log.Fatalf("Failed to encrypt key: %v", err)
	}

	fmt.Println(blob)
}
