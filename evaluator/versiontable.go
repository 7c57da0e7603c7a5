package evaluator

// productAliases folds product spellings onto the cutoff table's keys.
var productAliases = map[string]string{
	"httpd":           "apache",
	"apache httpd":    "apache",
	"apache2":         "apache",
	"mariadb":         "mysql",
	"percona":         "mysql",
	"postgres":        "postgresql",
	"microsoft-iis":   "iis",
	"openbsd openssh": "openssh",
	"pureftpd":        "proftpd",
}

// cutoffs holds the per-product version classification data.
//
// EOL entries are matched by prefix. CriticalMax is the highest version
// still classified as critical; SecureMin is the lowest version
// considered current. The OpenSSH CriticalMax of "7.4" is deliberate and
// matches the shipped report wording even though late 7.x releases saw
// long vendor support.
type versionCutoffs struct {
	EOL         []string
	CriticalMax string
	SecureMin   string
}

var cutoffs = map[string]versionCutoffs{
	"apache": {
		EOL:         []string{"1.", "2.0", "2.2"},
		CriticalMax: "2.4.48",
		SecureMin:   "2.4.56",
	},
	"nginx": {
		EOL:         []string{"0.", "1.0.", "1.2.", "1.4.", "1.6.", "1.8.", "1.10."},
		CriticalMax: "1.16.1",
		SecureMin:   "1.18.0",
	},
	"mysql": {
		EOL:         []string{"4.", "5.0", "5.1", "5.5", "5.6", "5.7"},
		CriticalMax: "8.0.27",
		SecureMin:   "8.0.33",
	},
	"postgresql": {
		EOL:         []string{"8.", "9.", "10."},
		CriticalMax: "11.9",
		SecureMin:   "13.0",
	},
	"mongodb": {
		EOL:         []string{"2.", "3.", "4.0"},
		CriticalMax: "4.2.0",
		SecureMin:   "5.0.0",
	},
	"redis": {
		EOL:         []string{"2.", "3."},
		CriticalMax: "5.0.0",
		SecureMin:   "6.2.0",
	},
	"openssh": {
		EOL:         []string{"4.", "5.", "6."},
		CriticalMax: "7.4",
		SecureMin:   "8.0",
	},
	"exim": {
		EOL:         []string{"3."},
		CriticalMax: "4.94",
		SecureMin:   "4.96",
	},
	"postfix": {
		EOL:         []string{"1.", "2."},
		CriticalMax: "3.3.0",
		SecureMin:   "3.5.0",
	},
	"php": {
		EOL:         []string{"4.", "5.", "7.0", "7.1", "7.2", "7.3", "7.4"},
		CriticalMax: "8.0.0",
		SecureMin:   "8.1.0",
	},
	"tomcat": {
		EOL:         []string{"5.", "6.", "7."},
		CriticalMax: "8.5.50",
		SecureMin:   "9.0.50",
	},
	"proftpd": {
		EOL:         []string{"1.2.", "1.3.0", "1.3.1", "1.3.2", "1.3.3"},
		CriticalMax: "1.3.5",
		SecureMin:   "1.3.7",
	},
	"iis": {
		EOL:         []string{"5.", "6.", "7."},
		CriticalMax: "8.5",
		SecureMin:   "10.0",
	},
	"dovecot": {
		EOL:         []string{"1."},
		CriticalMax: "2.2.36",
		SecureMin:   "2.3.13",
	},
}
