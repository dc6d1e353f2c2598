package repo

import (
	"time"
)

type Config struct {
	RepoRoot     string  `mapstructure:"-" toml:"-"`
	DialUrl      string  `mapstructure:"dial_url" toml:"dial_url"`
	ChainID      uint64  `mapstructure:"chain_id" toml:"chain_id"`
	ContractAddr string  `mapstructure:"contract_addr" toml:"contract_addr"`
	Account      Account `mapstructure:"account" toml:"account"`
	Tx           Tx      `mapstructure:"tx" toml:"tx"`
	Form         Form    `mapstructure:"form" toml:"form"`
	Query        Query   `mapstructure:"query" toml:"query"`
	Watch        Watch   `mapstructure:"watch" toml:"watch"`
	API          API     `mapstructure:"api" toml:"api"`
	Log          Log     `mapstructure:"log" toml:"log"`
}

type Account struct {
	// hex encoded secp256k1 key used to sign createProposal and vote transactions,
	// leave empty for read only usage
	PrivateKey string `mapstructure:"private_key" toml:"private_key"`
	// account used for eligibility reads when no private key is set
	Address string `mapstructure:"address" toml:"address"`
}

type Tx struct {
	// 0 means estimate gas for every transaction
	GasLimit        uint64        `mapstructure:"gas_limit" toml:"gas_limit"`
	ReceiptAttempts uint          `mapstructure:"receipt_attempts" toml:"receipt_attempts"`
	ReceiptBackoff  time.Duration `mapstructure:"receipt_backoff" toml:"receipt_backoff"`
}

type Form struct {
	DefaultDays int `mapstructure:"default_days" toml:"default_days"`
	MinDays     int `mapstructure:"min_days" toml:"min_days"`
	MaxDays     int `mapstructure:"max_days" toml:"max_days"`
}

type Query struct {
	// max number of in flight contract reads per listing
	Concurrency int `mapstructure:"concurrency" toml:"concurrency"`
}

type Watch struct {
	// beginning of the queried range, 1 means genesis block
	FromBlock uint64 `mapstructure:"from_block" toml:"from_block"`
	// end of the range, 0 means latest block
	ToBlock uint64 `mapstructure:"to_block" toml:"to_block"`
}

type API struct {
	Listen       string        `mapstructure:"listen" toml:"listen"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" toml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" toml:"write_timeout"`
}

type Log struct {
	Level        string        `mapstructure:"level" toml:"level"`
	Filename     string        `mapstructure:"filename" toml:"filename"`
	ReportCaller bool          `mapstructure:"report_caller" toml:"report_caller"`
	MaxAge       time.Duration `mapstructure:"max_age" toml:"max_age"`
	RotationTime time.Duration `mapstructure:"rotation_time" toml:"rotation_time"`
}

func DefaultConfig(repoRoot string) *Config {
	return &Config{
		RepoRoot:     repoRoot,
		DialUrl:      "ws://127.0.0.1:8545",
		ChainID:      31337,
		ContractAddr: DefaultContractAddr,
		Tx: Tx{
			GasLimit:        0,
			ReceiptAttempts: 10,
			ReceiptBackoff:  time.Second,
		},
		Form: Form{
			DefaultDays: 7,
			MinDays:     1,
			MaxDays:     30,
		},
		Query: Query{
			Concurrency: 8,
		},
		Watch: Watch{
			FromBlock: 1,
			ToBlock:   0,
		},
		API: API{
			Listen:       "127.0.0.1:9080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Log: Log{
			Level:        "info",
			Filename:     "ballot.log",
			ReportCaller: false,
			MaxAge:       30 * 24 * time.Hour,
			RotationTime: 24 * time.Hour,
		},
	}
}
