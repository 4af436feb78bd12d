package main

import (
	"crypto/tls"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gonzalop/ftps"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
	"gopkg.in/yaml.v2"
)

// Config is the ftpcli configuration file.
type Config struct {
	Address  string `yaml:"address"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`

	ExplicitTLS        bool   `yaml:"explicit_tls"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
	ServerName         string `yaml:"server_name"`

	Active          bool          `yaml:"active"`
	ExtendedPassive bool          `yaml:"extended_passive"`
	DataProtection  string        `yaml:"data_protection"`
	TransferType    string        `yaml:"transfer_type"`
	Timeout         time.Duration `yaml:"timeout"`
	BandwidthLimit  int64         `yaml:"bandwidth_limit"`
	ListingEncoding string        `yaml:"listing_encoding"`

	LogLevel string `yaml:"log_level"`
}

// LoadConfig loads the configuration file at path.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var c Config
	dec := yaml.NewDecoder(f)
	dec.SetStrict(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &c, nil
}

func (c *Config) validate() error {
	if c.Address == "" {
		return fmt.Errorf("address is required")
	}
	if _, err := parseProtection(c.DataProtection); err != nil {
		return err
	}
	if _, err := parseTransferType(c.TransferType); err != nil {
		return err
	}
	if _, err := encodingByName(c.ListingEncoding); err != nil {
		return err
	}
	if c.LogLevel != "" {
		if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
			return err
		}
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	if c.BandwidthLimit < 0 {
		return fmt.Errorf("bandwidth_limit must not be negative")
	}
	return nil
}

// Options translates the configuration into client options.
func (c *Config) Options(logger logrus.FieldLogger) ([]ftps.Option, error) {
	opts := []ftps.Option{ftps.WithLogger(logger)}

	if c.Timeout > 0 {
		opts = append(opts, ftps.WithTimeout(c.Timeout))
	}
	if c.ExplicitTLS {
		opts = append(opts, ftps.WithExplicitTLS(c.tlsConfig()))
	}
	if c.Active {
		opts = append(opts, ftps.WithActiveMode())
	}
	if c.ExtendedPassive {
		opts = append(opts, ftps.WithExtendedPassive())
	}

	prot, err := parseProtection(c.DataProtection)
	if err != nil {
		return nil, err
	}
	opts = append(opts, ftps.WithDataProtection(prot))

	typ, err := parseTransferType(c.TransferType)
	if err != nil {
		return nil, err
	}
	opts = append(opts, ftps.WithTransferType(typ))

	if c.BandwidthLimit > 0 {
		opts = append(opts, ftps.WithBandwidthLimit(c.BandwidthLimit))
	}

	enc, err := encodingByName(c.ListingEncoding)
	if err != nil {
		return nil, err
	}
	if enc != nil {
		opts = append(opts, ftps.WithListingEncoding(enc))
	}
	return opts, nil
}

func (c *Config) tlsConfig() *tls.Config {
	return &tls.Config{
		ServerName:         c.ServerName,
		InsecureSkipVerify: c.InsecureSkipVerify,
	}
}

func parseProtection(s string) (ftps.DataProtection, error) {
	switch strings.ToLower(s) {
	case "", "inherit":
		return ftps.DataProtectionInherit, nil
	case "clear", "c":
		return ftps.DataProtectionClear, nil
	case "private", "p":
		return ftps.DataProtectionPrivate, nil
	}
	return 0, fmt.Errorf("unknown data_protection %q", s)
}

func parseTransferType(s string) (ftps.TransferType, error) {
	switch strings.ToLower(s) {
	case "", "binary", "i", "image":
		return ftps.TypeBinary, nil
	case "ascii", "a":
		return ftps.TypeASCII, nil
	}
	return 0, fmt.Errorf("unknown transfer_type %q", s)
}

// encodingByName maps a listing_encoding name to its decoder. The empty
// name and "utf-8" mean no decoding.
func encodingByName(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.ReplaceAll(name, "_", "-")) {
	case "", "utf-8", "utf8":
		return nil, nil
	case "utf-8-bom":
		return unicode.UTF8BOM, nil
	case "utf-16le":
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), nil
	case "utf-16be":
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM), nil
	case "latin1", "iso-8859-1":
		return charmap.ISO8859_1, nil
	case "iso-8859-15":
		return charmap.ISO8859_15, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	case "windows-1251", "cp1251":
		return charmap.Windows1251, nil
	case "cp437":
		return charmap.CodePage437, nil
	case "cp850":
		return charmap.CodePage850, nil
	case "koi8-r":
		return charmap.KOI8R, nil
	case "big5":
		return traditionalchinese.Big5, nil
	}
	return nil, fmt.Errorf("unknown listing_encoding %q", name)
}

// newLogger builds the logger used by the client, writing text to stderr.
func newLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetLevel(logrus.WarnLevel)
	if level != "" {
		if lvl, err := logrus.ParseLevel(level); err == nil {
			logger.SetLevel(lvl)
		}
	}
	return logger
}
