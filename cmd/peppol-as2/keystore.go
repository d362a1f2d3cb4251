package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sirosfoundation/go-peppol-as2/internal/keystore"
)

// NewKeyStoreCommand creates the keystore command group
func NewKeyStoreCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keystore",
		Short: "Inspect the AS2 keystore",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List keystore entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyStoreList(cmd, rootOpts)
		},
	})
	return cmd
}

func runKeyStoreList(cmd *cobra.Command, rootOpts *RootOptions) error {
	cfg, _, err := rootOpts.load(cmd)
	if err != nil {
		return err
	}
	params, err := cfg.Params()
	if err != nil {
		return err
	}

	store, err := keystore.Open(keystore.Config{
		Type:     params.KeyStore.Type,
		Path:     params.KeyStore.Path,
		Password: params.KeyStore.Password,
		PKCS11:   params.KeyStore.PKCS11,
	})
	if err != nil {
		return fmt.Errorf("opening keystore: %w", err)
	}
	defer store.Close()

	aliases, err := store.Aliases()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ALIAS\tTYPE\tKEY\tSUBJECT\tNOT AFTER")
	for _, alias := range aliases {
		kind := "certificate"
		key := "-"
		if signer, err := store.Signer(alias); err == nil {
			kind = "key"
			pub := signer.Public()
			key = fmt.Sprintf("%s %d", keystore.KeyAlgorithmName(pub), keystore.KeySize(pub))
		} else if !errors.Is(err, keystore.ErrKeyNotFound) {
			return err
		}

		cert, err := store.Certificate(alias)
		if err != nil {
			return err
		}
		marker := ""
		if alias == params.SenderKeyAlias {
			marker = " *"
		}
		fmt.Fprintf(w, "%s%s\t%s\t%s\t%s\t%s\n", alias, marker, kind, key,
			cert.Subject.CommonName, cert.NotAfter.Format("2006-01-02"))
	}
	return w.Flush()
}
