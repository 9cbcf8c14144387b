package cmd

import (
	"encoding/hex"
	"fmt"
	"os"
	"path"

	"github.com/cockroachdb/errors"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/mintline/marketplace-indexer/common/errs"
	"github.com/spf13/cobra"
)

type generateKeypairCmdOptions struct {
	Path string
}

func NewGenerateKeypairCommand() *cobra.Command {
	opts := &generateKeypairCmdOptions{}

	cmd := &cobra.Command{
		Use:   "generate-keypair",
		Short: "Generate a new keypair for signing intent submissions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return generateKeypairHandler(opts, cmd, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.Path, "path", "/data/keys", `Path to save to key pair file`)

	return cmd
}

func generateKeypairHandler(opts *generateKeypairCmdOptions, _ *cobra.Command, _ []string) error {
	fmt.Printf("Generating key pair\n")

	privKey, err := ethcrypto.GenerateKey()
	if err != nil {
		return errors.Wrap(errs.SomethingWentWrong, "generate private key")
	}
	address := ethcrypto.PubkeyToAddress(privKey.PublicKey)

	fmt.Printf("Address: %s\n", address.Hex())
	err = os.MkdirAll(opts.Path, 0o755)
	if err != nil {
		return errors.Wrap(errs.SomethingWentWrong, "create directory")
	}

	privateKeyPath := path.Join(opts.Path, "priv.key")

	_, err = os.Stat(privateKeyPath)
	if err == nil {
		fmt.Printf("Existing private key found at %s\n[WARNING] THE EXISTING PRIVATE KEY WILL BE LOST\nType [replace] to replace existing private key: ", privateKeyPath)
		var ans string
		fmt.Scanln(&ans)
		if ans != "replace" {
			fmt.Printf("Keypair generation aborted\n")
			return nil
		}
	}

	err = os.WriteFile(privateKeyPath, []byte(hex.EncodeToString(ethcrypto.FromECDSA(privKey))), 0o644)
	if err != nil {
		return errors.Wrap(err, "write private key file")
	}
	fmt.Printf("Private key saved at %s\n", privateKeyPath)

	addressPath := path.Join(opts.Path, "address")
	err = os.WriteFile(addressPath, []byte(address.Hex()), 0o644)
	if err != nil {
		return errors.Wrap(errs.SomethingWentWrong, "write address file")
	}
	fmt.Printf("Address saved at %s\n", addressPath)
	return nil
}
