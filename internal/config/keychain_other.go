//go:build !darwin

package config

import "fmt"

// secrets.json maps service -> account -> value.
type secretsDoc map[string]map[string]string

func keychainGet(service, account string) ([]byte, error) {
	var doc secretsDoc
	if err := (jsonFile{path: secretsFilePath()}).read(&doc); err != nil {
		return nil, fmt.Errorf("secret store not available: %w", err)
	}
	val, ok := doc[service][account]
	if !ok {
		return nil, fmt.Errorf("no secret for %s/%s", service, account)
	}
	return []byte(val), nil
}

func keychainSet(service, account, value string) error {
	f := jsonFile{path: secretsFilePath()}
	var doc secretsDoc
	if err := f.read(&doc); err != nil {
		return err
	}
	if doc == nil {
		doc = secretsDoc{}
	}
	if doc[service] == nil {
		doc[service] = map[string]string{}
	}
	doc[service][account] = value
	return f.write(doc)
}
