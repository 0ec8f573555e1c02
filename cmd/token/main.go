package main

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/fleetyard/provisioning-server/token"
)

var verifyFlag = &cli.BoolFlag{
	Name:  "verify",
	Usage: "re-run the server's signature check and report VALID/INVALID",
}
var signingKeyFlag = &cli.StringFlag{
	Name:  "signing-key",
	Usage: "hex-encoded signing key to verify against",
}
var secretsFlag = &cli.StringFlag{
	Name:  "secrets",
	Usage: "path to secrets.yaml to read the signing key from",
}

func main() {
	app := &cli.App{
		Name:  "token",
		Usage: "Offline provisioning token utilities",
		Commands: []*cli.Command{
			{
				Name:      "inspect",
				Usage:     "Decode a token's claims; optionally verify its signature",
				ArgsUsage: "<token>",
				Flags:     []cli.Flag{verifyFlag, signingKeyFlag, secretsFlag},
				Action:    inspect,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func inspect(cCtx *cli.Context) error {
	tok := cCtx.Args().First()
	if tok == "" {
		return errors.New("usage: token inspect <token>")
	}

	var key []byte
	if cCtx.Bool(verifyFlag.Name) {
		var err error
		key, err = loadSigningKey(cCtx)
		if err != nil {
			return err
		}
	}

	insp, err := token.Inspect(tok, key)
	if err != nil {
		return err
	}

	claims, err := json.MarshalIndent(insp.Claims, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(claims))

	if insp.Verified {
		if !insp.Valid {
			fmt.Println("signature: INVALID")
			return cli.Exit("", 1)
		}
		fmt.Println("signature: VALID")
	}
	return nil
}

func loadSigningKey(cCtx *cli.Context) ([]byte, error) {
	if keyHex := cCtx.String(signingKeyFlag.Name); keyHex != "" {
		key, err := hex.DecodeString(keyHex)
		if err != nil {
			return nil, fmt.Errorf("invalid --signing-key: %w", err)
		}
		return key, nil
	}

	secretsPath := cCtx.String(secretsFlag.Name)
	if secretsPath == "" {
		return nil, errors.New("--verify requires --signing-key or --secrets")
	}

	data, err := os.ReadFile(secretsPath)
	if err != nil {
		return nil, err
	}
	var secrets struct {
		SigningKey string `yaml:"signing_key"`
	}
	if err := yaml.Unmarshal(data, &secrets); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", secretsPath, err)
	}
	if secrets.SigningKey == "" {
		return nil, fmt.Errorf("no signing key in %s", secretsPath)
	}

	key, err := hex.DecodeString(secrets.SigningKey)
	if err != nil {
		return nil, fmt.Errorf("signing key in %s is not valid hex: %w", secretsPath, err)
	}
	return key, nil
}
