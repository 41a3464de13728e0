package clients

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// fileClient is a client entry in a clients file. Either secret or secretHash
// may be given; plain secrets are hashed on load.
type fileClient struct {
	Client `yaml:",inline"`
	Secret string `yaml:"secret"`
}

type clientsFile struct {
	Clients []fileClient `yaml:"clients"`
}

// LoadFile reads client registrations from a YAML file of the form
//
//	clients:
//	  - id: web-app
//	    type: confidential
//	    secret: s3cret
//	    redirectURIs: [https://app.example.com/callback]
func LoadFile(path string) ([]*Client, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "[clients.LoadFile] read")
	}
	return Parse(data)
}

// Parse decodes client registrations from YAML.
func Parse(data []byte) ([]*Client, error) {
	var file clientsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(err, "[clients.Parse] yaml")
	}

	result := make([]*Client, 0, len(file.Clients))
	for i := range file.Clients {
		entry := file.Clients[i]
		client := entry.Client
		if client.Type == "" {
			client.Type = ClientTypeConfidential
		}
		if entry.Secret != "" {
			hash, err := HashSecret(entry.Secret)
			if err != nil {
				return nil, err
			}
			client.SecretHash = hash
		}
		if err := client.Validate(); err != nil {
			return nil, errors.Wrapf(err, "[clients.Parse] entry %d", i)
		}
		result = append(result, &client)
	}
	return result, nil
}

// Seed upserts every client into repo.
func Seed(repo Repo, list []*Client) error {
	for _, c := range list {
		if err := repo.Upsert(c); err != nil {
			return errors.Wrapf(err, "[clients.Seed] upsert %s", c.ID)
		}
	}
	return nil
}
