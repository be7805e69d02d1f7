package main

import (
	"context"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/ethereum/go-ethereum/common"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/metadb"
	"go.vocdoni.io/dvote/log"

	"github.com/cipherfund/cipherfund/campaigns"
	"github.com/cipherfund/cipherfund/crypto/ecc/curves"
	"github.com/cipherfund/cipherfund/ledger"
	"github.com/cipherfund/cipherfund/oracle"
	"github.com/cipherfund/cipherfund/service"
	"github.com/cipherfund/cipherfund/storage"
	"github.com/cipherfund/cipherfund/vault"
)

func main() {
	host := flag.String("host", "0.0.0.0", "API host to bind")
	port := flag.Int("port", 8080, "API port")
	dataDir := flag.String("datadir", "./cipherfund-data", "data directory")
	logLevel := flag.String("loglevel", "info", "log level (debug, info, warn, error)")
	rate := flag.Int64("rate", 1_000_000_000, "base currency per ledger unit")
	chainID := flag.Uint32("chainid", 1, "chain id namespacing campaign ids")
	owner := flag.String("owner", "", "owner address allowed to pause operations")
	committeeSize := flag.Int("committee-size", 5, "oracle committee size")
	committeeThreshold := flag.Int("committee-threshold", 3, "oracle decryption threshold")
	oracleInterval := flag.Duration("oracle-interval", 5*time.Second, "oracle queue polling interval")

	flag.Parse()
	log.Init(*logLevel, "stdout", nil)

	if !common.IsHexAddress(*owner) {
		log.Fatalf("missing or malformed --owner address %q", *owner)
	}
	ownerAddr := common.HexToAddress(*owner)

	database, err := metadb.New(db.TypePebble, *dataDir)
	if err != nil {
		log.Fatalf("could not open database: %v", err)
	}

	curve := curves.New(curves.CurveTypeBabyJubJub)
	committee, err := oracle.NewCommittee(*committeeSize, *committeeThreshold, curve)
	if err != nil {
		log.Fatalf("could not run the key ceremony: %v", err)
	}
	log.Infow("oracle committee ready", "size", *committeeSize, "threshold", *committeeThreshold)

	ldg, err := ledger.New(database, curve, committee.PublicKey())
	if err != nil {
		log.Fatalf("could not open ledger: %v", err)
	}
	store := storage.New(database)
	conv, err := ledger.NewConverter(big.NewInt(*rate))
	if err != nil {
		log.Fatalf("invalid conversion rate: %v", err)
	}
	vlt, err := vault.New(database, ldg, store, conv, ownerAddr, committee.Addresses(), committee.Threshold)
	if err != nil {
		log.Fatalf("could not create vault: %v", err)
	}
	mgr := campaigns.New(ldg, vlt, store, *chainID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	apiSvc := service.NewAPI(ldg, vlt, mgr, *host, *port)
	if err := apiSvc.Start(ctx); err != nil {
		log.Fatalf("could not start API service: %v", err)
	}
	oracleSvc := service.NewOracle(committee, store, vlt, ldg, *oracleInterval)
	if err := oracleSvc.Start(ctx); err != nil {
		log.Fatalf("could not start oracle service: %v", err)
	}
	log.Infow("cipherfund node running", "host", *host, "port", *port, "rate", *rate)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	oracleSvc.Stop()
	apiSvc.Stop()
	store.Close()
}
