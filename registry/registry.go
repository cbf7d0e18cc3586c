package registry

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	goversion "github.com/hashicorp/go-version"
)

type Registry interface {
	GetDescriptorVersions(owner string, name string) (*Versions, error)
	GetDescriptor(owner string, name string, version string) (*Descriptor, error)
}

type TransportWithCredentials struct {
	token string
	T     http.RoundTripper
}

func (t *TransportWithCredentials) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}
	return t.T.RoundTrip(req)
}

type RegistryImpl struct {
	client      http.Client
	Host        string
	Descriptors string
}

type Config struct {
	Capabilities map[string]string `json:"capabilities"`
}

type Credential struct {
	Token string `hcl:"token,optional" json:"token,omitempty"`
}

// Descriptor is the registry record for a published tool dependency
// descriptor
type Descriptor struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	Owner               string   `json:"owner"`
	Description         string   `json:"description"`
	Categories          []string `json:"categories"`
	RemoteRepositoryURL string   `json:"remote_repository_url"`
	Version             string   `json:"version"`
	DownloadURL         string   `json:"download_url"`
	CreatedAt           string   `json:"created_at"`
	UpdatedAt           string   `json:"updated_at"`
}

type Versions struct {
	Latest   string    `json:"latest"`
	Versions []Version `json:"versions"`
}

type Version struct {
	Version   string `json:"version"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func New(host string, token string) (Registry, error) {
	client := http.Client{
		Timeout: 5 * time.Second,
		Transport: &TransportWithCredentials{
			token: token,
			T:     http.DefaultTransport,
		},
	}

	req, err := http.NewRequest("GET", fmt.Sprintf("http://%s/.well-known/shed-registry.json", host), nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf(`"%s" is not a valid registry`, host)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf(`"%s" is not a valid registry, status: %d`, host, resp.StatusCode)
	}

	var config Config
	err = json.NewDecoder(resp.Body).Decode(&config)
	if err != nil {
		return nil, err
	}

	if config.Capabilities["descriptors.v1"] == "" {
		return nil, fmt.Errorf(`registry "%s" does not support descriptors`, host)
	}

	parsedURL, err := url.Parse(config.Capabilities["descriptors.v1"])
	if err != nil {
		return nil, err
	}

	// if the descriptors url also contains a host, use that instead
	if parsedURL.Host != "" {
		host = parsedURL.Host
	}

	return &RegistryImpl{
		client:      client,
		Host:        host,
		Descriptors: host + parsedURL.Path,
	}, nil
}

func (r *RegistryImpl) GetDescriptorVersions(owner string, name string) (*Versions, error) {
	req, err := http.NewRequest("GET", fmt.Sprintf("http://%s/%s/%s/versions", r.Descriptors, owner, name), nil)
	if err != nil {
		return nil, err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf(`unable to get versions for descriptor "%s/%s", status: %d`, owner, name, resp.StatusCode)
	}

	var versions Versions
	err = json.NewDecoder(resp.Body).Decode(&versions)
	if err != nil {
		return nil, err
	}

	return &versions, nil
}

func (r *RegistryImpl) GetDescriptor(owner string, name string, version string) (*Descriptor, error) {
	req, err := http.NewRequest("GET", fmt.Sprintf("http://%s/%s/%s/%s", r.Descriptors, owner, name, version), nil)
	if err != nil {
		return nil, err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf(`unable to get descriptor "%s/%s" at version %s, status: %d`, owner, name, version, resp.StatusCode)
	}

	var descriptor Descriptor
	err = json.NewDecoder(resp.Body).Decode(&descriptor)
	if err != nil {
		return nil, err
	}

	return &descriptor, nil
}

// ResolveVersion returns the highest version from the given list that
// satisfies the semantic version constraint, i.e. ">= 0.18, < 0.19".
// When the constraint is empty the latest version is returned.
func ResolveVersion(versions *Versions, constraint string) (string, error) {
	if constraint == "" {
		return versions.Latest, nil
	}

	cs, err := goversion.NewConstraint(constraint)
	if err != nil {
		return "", fmt.Errorf("invalid version constraint %s: %s", constraint, err)
	}

	parsed := []*goversion.Version{}
	for _, v := range versions.Versions {
		ver, err := goversion.NewVersion(v.Version)
		if err != nil {
			// skip versions that are not semantic
			continue
		}

		parsed = append(parsed, ver)
	}

	sort.Sort(goversion.Collection(parsed))

	// walk the sorted versions backwards so the highest match wins
	for i := len(parsed) - 1; i >= 0; i-- {
		if cs.Check(parsed[i]) {
			return parsed[i].Original(), nil
		}
	}

	return "", fmt.Errorf("no version satisfies the constraint %s", constraint)
}
