// Command keygen writes the RSA keypair used to sign session tokens.
package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	def := os.Getenv("KEYS_DIR")
	if def == "" {
		def = "keys"
	}
	dir := flag.String("dir", def, "directory to write private.key and public.key into")
	bits := flag.Int("bits", 4096, "RSA key size")
	force := flag.Bool("force", false, "overwrite an existing keypair")
	flag.Parse()

	if err := run(*dir, *bits, *force); err != nil {
		fmt.Fprintf(os.Stderr, "keygen: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s and %s\n", filepath.Join(*dir, "private.key"), filepath.Join(*dir, "public.key"))
}

func run(dir string, bits int, force bool) error {
	privPath := filepath.Join(dir, "private.key")
	if _, err := os.Stat(privPath); err == nil && !force {
		return fmt.Errorf("%s exists, pass -force to replace it", privPath)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return err
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return err
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return err
	}

	if err := os.WriteFile(privPath, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER}), 0o600); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "public.key"), pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}), 0o644)
}
