package config

import (
	"os"
	"regexp"
	"sort"
)

// envRef matches ${VAR} and $VAR
var envRef = regexp.MustCompile(`\$\{([A-Za-z0-9_]+)\}|\$([A-Za-z0-9_]+)`)

// ExpandEnv replaces ${VAR} and $VAR with environment values. Unset
// variables expand to "".
func ExpandEnv(s string) string {
	out, _ := expand(s)
	return out
}

// expand also returns the referenced variables that are not set
func expand(s string) (string, []string) {
	var unset []string
	out := envRef.ReplaceAllStringFunc(s, func(match string) string {
		sub := envRef.FindStringSubmatch(match)
		name := sub[1]
		if name == "" {
			name = sub[2]
		}
		v, ok := os.LookupEnv(name)
		if !ok {
			unset = append(unset, name)
		}
		return v
	})
	return out, unset
}

// secretField is a config value that may reference the environment
type secretField struct {
	key   string
	value *string
}

func (c *Config) secretFields() []secretField {
	fields := []secretField{
		{"llm.api_key", &c.LLM.APIKey},
		{"llm.base_url", &c.LLM.BaseURL},
		{"solana.rpc_url", &c.Solana.RPCURL},
		{"solana.private_key", &c.Solana.PrivateKey},
		{"solana.wallet_address", &c.Solana.WalletAddress},
		{"helius.api_key", &c.Helius.APIKey},
		{"redis.addr", &c.Redis.Addr},
		{"redis.password", &c.Redis.Password},
		{"mysql.dsn", &c.MySQL.DSN},
	}
	for i := range c.EVM.Chains {
		fields = append(fields, secretField{"evm.chains." + c.EVM.Chains[i].Name + ".rpc_url", &c.EVM.Chains[i].RPCURL})
	}
	return fields
}

// expandSecrets resolves environment references in credential and endpoint
// fields, remembering every reference that named an unset variable
func (c *Config) expandSecrets() {
	c.unset = nil
	for _, f := range c.secretFields() {
		out, unset := expand(*f.value)
		*f.value = out
		for _, name := range unset {
			if c.unset == nil {
				c.unset = make(map[string]string)
			}
			c.unset[f.key] = name
		}
	}
}

// UnsetReferences lists the secret fields whose environment reference was
// not set when the file was loaded, as "field ($VAR)"
func (c *Config) UnsetReferences() []string {
	refs := make([]string, 0, len(c.unset))
	for key, name := range c.unset {
		refs = append(refs, key+" ($"+name+")")
	}
	sort.Strings(refs)
	return refs
}

// unsetHint explains an empty secret that came from an unset variable
func (c *Config) unsetHint(key string) string {
	if name, ok := c.unset[key]; ok {
		return "; " + key + " references $" + name + " which is not set"
	}
	return ""
}
