package main

import (
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/clearport/params"
	"github.com/uhyunpark/clearport/pkg/crypto"
	"github.com/uhyunpark/clearport/pkg/order"
)

// Signs a sample order for the configured domain and prints everything a
// solver needs to include it in a batch: digest, UID, signature.
func main() {
	cfg := params.LoadFromEnv("")

	var signer *crypto.Signer
	var err error
	if key := os.Getenv("PRIVATE_KEY"); key != "" {
		signer, err = crypto.FromPrivateKeyHex(key)
	} else {
		fmt.Println("Generating new keypair...")
		signer, err = crypto.GenerateKey()
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Owner: %s\n", signer.Address().Hex())
	fmt.Printf("Private Key: %s (KEEP SECRET!)\n\n", signer.PrivateKeyHex())

	domain := order.Domain{
		Name:              cfg.Domain.Name,
		Version:           cfg.Domain.Version,
		ChainID:           cfg.Domain.ChainID,
		VerifyingContract: common.HexToAddress(cfg.Domain.VerifyingContract),
	}

	o := order.Order{
		SellToken:         common.HexToAddress("0x1111111111111111111111111111111111111111"),
		BuyToken:          common.HexToAddress("0x2222222222222222222222222222222222222222"),
		SellAmount:        big.NewInt(100_000_000),
		BuyAmount:         big.NewInt(95_000_000),
		ValidTo:           uint32(time.Now().Add(time.Hour).Unix()),
		FeeAmount:         big.NewInt(1_000_000),
		Kind:              order.Sell,
		PartiallyFillable: false,
		SellTokenBalance:  order.BalanceERC20,
		BuyTokenBalance:   order.BalanceERC20,
	}

	digest, err := o.Digest(domain)
	if err != nil {
		fmt.Printf("Error hashing order: %v\n", err)
		os.Exit(1)
	}

	signature, err := signer.Sign(digest.Bytes())
	if err != nil {
		fmt.Printf("Error signing: %v\n", err)
		os.Exit(1)
	}

	uid := order.PackUID(digest, signer.Address(), o.ValidTo)

	fmt.Println("Order:")
	fmt.Printf("  Sell: %s of %s\n", o.SellAmount, o.SellToken.Hex())
	fmt.Printf("  Buy:  %s of %s\n", o.BuyAmount, o.BuyToken.Hex())
	fmt.Printf("  Fee:  %s\n", o.FeeAmount)
	fmt.Printf("  ValidTo: %d\n\n", o.ValidTo)

	fmt.Printf("Digest:    %s\n", digest.Hex())
	fmt.Printf("UID:       %s\n", uid)
	fmt.Printf("Signature: 0x%x\n\n", signature)

	// Sanity check: the signature must recover the owner.
	recovered, err := crypto.RecoverAddress(digest, signature)
	if err != nil || recovered != signer.Address() {
		fmt.Printf("Verification FAILED: recovered %s, err %v\n", recovered.Hex(), err)
		os.Exit(1)
	}
	fmt.Println("Signature verified.")
}
