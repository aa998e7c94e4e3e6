package params

import (
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract string
}

type Node struct {
	DBPath  string
	APIAddr string
	LogFile string
	// Self is the settlement engine's own address, the target of
	// self-interactions (storage reclamation).
	Self string
	// Relayer is the custodian's transfer agent; interactions with it are
	// rejected.
	Relayer string
	// Manager controls the solver allow-list.
	Manager string
}

type Config struct {
	Domain  Domain
	Node    Node
	Solvers []string
}

func Default() Config {
	return Config{
		Domain: Domain{
			Name:              "Clearport Protocol",
			Version:           "1",
			ChainID:           big.NewInt(1337), // local dev chain
			VerifyingContract: "0x0000000000000000000000000000000000000000",
		},
		Node: Node{
			DBPath:  "./data/ledger.db",
			APIAddr: ":8080",
			LogFile: "data/node.log",
			Self:    "0x0000000000000000000000000000000000000001",
			Relayer: "0x0000000000000000000000000000000000000002",
			Manager: "0x0000000000000000000000000000000000000003",
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if chainID := os.Getenv("CHAIN_ID"); chainID != "" {
		if id, err := strconv.ParseInt(chainID, 10, 64); err == nil {
			cfg.Domain.ChainID = big.NewInt(id)
		}
	}
	if contract := os.Getenv("VERIFYING_CONTRACT"); contract != "" {
		cfg.Domain.VerifyingContract = contract
	}

	if dbPath := os.Getenv("DB_PATH"); dbPath != "" {
		cfg.Node.DBPath = dbPath
	}
	if addr := os.Getenv("API_ADDR"); addr != "" {
		cfg.Node.APIAddr = addr
	}
	if logFile := os.Getenv("LOG_FILE"); logFile != "" {
		cfg.Node.LogFile = logFile
	}
	if self := os.Getenv("SETTLEMENT_ADDRESS"); self != "" {
		cfg.Node.Self = self
	}
	if relayer := os.Getenv("RELAYER_ADDRESS"); relayer != "" {
		cfg.Node.Relayer = relayer
	}
	if manager := os.Getenv("MANAGER_ADDRESS"); manager != "" {
		cfg.Node.Manager = manager
	}

	// Comma-separated solver addresses, e.g. "0xaa..,0xbb.."
	if solvers := os.Getenv("SOLVERS"); solvers != "" {
		for _, s := range strings.Split(solvers, ",") {
			if s = strings.TrimSpace(s); s != "" {
				cfg.Solvers = append(cfg.Solvers, s)
			}
		}
	}

	return cfg
}
