package registry

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/ecr"
	"github.com/aws/aws-sdk-go/service/ecr/ecriface"
	"github.com/pkg/errors"
)

// How long AWS tokens remain valid, according to AWS docs; this is
// used as an upper bound, overridden by any sooner expiry returned in
// the API response.
const defaultTokenValid = 12 * time.Hour

// DockerConfig is the credentials part of a docker config file:
//
//  {
//   "auths": {
//     "{{ registry endpoint }}": {
//        "auth": "{{ authentication token }}"
//     }
//    }
//  }
type DockerConfig struct {
	Auths map[string]Auth `json:"auths"`
	// Expires is the earliest expiry of the tokens.
	Expires time.Time `json:"-"`
}

// Auth contains the base64 encoded username:password.
type Auth struct {
	Auth string `json:"auth"`
}

// UserPass decodes the token into the username and password a
// `docker login` expects.
func (a Auth) UserPass() (string, string, error) {
	decoded, err := base64.StdEncoding.DecodeString(a.Auth)
	if err != nil {
		return "", "", errors.Wrap(err, "decoding registry token")
	}
	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("decoded credential has wrong number of fields (expected 2, got %d)", len(parts))
	}
	return parts[0], parts[1], nil
}

func (c *DockerConfig) String() string {
	bs, _ := json.Marshal(c)
	return string(bs)
}

// ECRCredentials fetches docker credentials for the given ECR
// registry (i.e., account) IDs, or the caller's own registry if none
// are given.
func ECRCredentials(ctx context.Context, api ecriface.ECRAPI, registryIDs []string) (*DockerConfig, error) {
	input := &ecr.GetAuthorizationTokenInput{}
	if len(registryIDs) > 0 {
		input.RegistryIds = aws.StringSlice(registryIDs)
	}
	token, err := api.GetAuthorizationTokenWithContext(ctx, input)
	if err != nil {
		return nil, errors.Wrap(classify(err), "fetching ECR authorization token")
	}
	config := &DockerConfig{
		Auths:   make(map[string]Auth),
		Expires: time.Now().Add(defaultTokenValid),
	}
	for _, v := range token.AuthorizationData {
		// Remove the https prefix
		host := strings.TrimPrefix(aws.StringValue(v.ProxyEndpoint), "https://")
		config.Auths[host] = Auth{aws.StringValue(v.AuthorizationToken)}
		if v.ExpiresAt != nil && v.ExpiresAt.Before(config.Expires) {
			config.Expires = *v.ExpiresAt
		}
	}
	return config, nil
}
