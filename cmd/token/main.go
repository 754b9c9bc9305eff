// Команда token выпускает JWT для оператора сервиса.
//
//	CONFIG_PATH=./config/local.yaml go run ./cmd/token -user support -role operator
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/magabrotheeeer/user-points/internal/config"
	jwtlib "github.com/magabrotheeeer/user-points/internal/lib/jwt"
)

func main() {
	username := flag.String("user", "", "имя оператора")
	role := flag.String("role", jwtlib.RoleOperator, "роль: admin или operator")
	flag.Parse()

	if *username == "" {
		fmt.Fprintln(os.Stderr, "flag -user is required")
		os.Exit(2)
	}
	if *role != jwtlib.RoleAdmin && *role != jwtlib.RoleOperator {
		fmt.Fprintf(os.Stderr, "unknown role %q\n", *role)
		os.Exit(2)
	}

	cfg := config.MustLoad()
	if cfg.JWTSecretKey == "" {
		fmt.Fprintln(os.Stderr, "jwttoken.jwt_secret_key is not configured")
		os.Exit(1)
	}

	token, err := jwtlib.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL, cfg.Issuer).GenerateToken(*username, *role)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(token)
}
