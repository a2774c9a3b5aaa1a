package commands

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	sshpkg "golang.org/x/crypto/ssh"
)

func newKeygenCommand() *cobra.Command {
	var (
		outPath string
		comment string
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a VNF key pair",
		Long: `Generate an ed25519 SSH key pair. The public key is printed in authorized_keys
format, ready to be used as the public_key property of a VNF.`,
		Example: `  # Write data/keys/vnf1 and data/keys/vnf1.pub
  vnflcm keygen --out data/keys/vnf1 --comment vnf1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				if _, err := os.Stat(outPath); err == nil {
					return fmt.Errorf("key %s already exists, use --force to replace it", outPath)
				}
			}

			pub, err := generateKeyPair(outPath, comment)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), map[string]string{
					"private_key": outPath,
					"public_key":  pub,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), pub)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", filepath.Join("data", "keys", "vnf-ed25519"), "private key path; the public key gets a .pub suffix")
	cmd.Flags().StringVar(&comment, "comment", "", "public key comment")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing key")

	return cmd
}

// generateKeyPair writes an ed25519 key pair to path and path.pub and returns
// the public key line.
func generateKeyPair(path, comment string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("failed to create key directory: %w", err)
	}

	pubKey, privKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", fmt.Errorf("failed to generate keypair: %w", err)
	}

	privBlock, err := sshpkg.MarshalPrivateKey(privKey, comment)
	if err != nil {
		return "", fmt.Errorf("failed to marshal private key: %w", err)
	}
	if err := os.WriteFile(path, pem.EncodeToMemory(privBlock), 0o600); err != nil {
		return "", fmt.Errorf("failed to write private key: %w", err)
	}

	sshPubKey, err := sshpkg.NewPublicKey(pubKey)
	if err != nil {
		return "", fmt.Errorf("failed to create SSH public key: %w", err)
	}
	line := strings.TrimSpace(string(sshpkg.MarshalAuthorizedKey(sshPubKey)))
	if comment != "" {
		line += " " + comment
	}
	if err := os.WriteFile(path+".pub", []byte(line+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("failed to write public key: %w", err)
	}

	return line, nil
}
