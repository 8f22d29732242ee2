package registry

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/ecr"
	"github.com/aws/aws-sdk-go/service/ecr/ecriface"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"

	deployerr "github.com/fluxcd/ecsdeploy/pkg/errors"
	"github.com/fluxcd/ecsdeploy/pkg/image"
)

const (
	// For recognising ECR hosts
	awsPartitionSuffix   = ".amazonaws.com"
	awsCnPartitionSuffix = ".amazonaws.com.cn"
)

func validECRHost(domain string) bool {
	switch {
	case strings.HasSuffix(domain, awsPartitionSuffix):
		return true
	case strings.HasSuffix(domain, awsCnPartitionSuffix):
		return true
	}
	return false
}

// registryID extracts the account ID from an ECR host, which look
// like this:
//
//     <account-id>.dkr.ecr.<region>.amazonaws.com
//
// It returns nil for anything else, which the API takes to mean the
// caller's own registry.
func registryID(domain string) *string {
	if !validECRHost(domain) {
		return nil
	}
	bits := strings.Split(domain, ".")
	if len(bits) < 6 || bits[1] != "dkr" || bits[2] != "ecr" {
		return nil
	}
	return aws.String(bits[0])
}

// ECR is the Registry backed by Amazon ECR.
type ECR struct {
	client ecriface.ECRAPI
	logger log.Logger
}

var _ Registry = &ECR{}

func NewECR(client ecriface.ECRAPI, logger log.Logger) *ECR {
	return &ECR{
		client: client,
		logger: log.With(logger, "component", "ecr"),
	}
}

// Repository accepts either a bare repository name, which is looked
// up in the caller's registry, or a name already qualified with an ECR
// host, which is looked up in that account's registry.
func (r *ECR) Repository(ctx context.Context, name string) (image.Name, error) {
	input := &ecr.DescribeRepositoriesInput{RepositoryNames: aws.StringSlice([]string{name})}
	if n, err := image.ParseName(name); err == nil && n.Qualified() && validECRHost(n.Domain) {
		input.RegistryId = registryID(n.Domain)
		input.RepositoryNames = aws.StringSlice([]string{n.Image})
	}

	out, err := r.client.DescribeRepositoriesWithContext(ctx, input)
	if err != nil {
		return image.Name{}, errors.Wrapf(classify(err), "describing repository %q", name)
	}
	if len(out.Repositories) == 0 {
		return image.Name{}, errors.Wrapf(ErrRepositoryNotFound, "describing repository %q", name)
	}
	uri := aws.StringValue(out.Repositories[0].RepositoryUri)
	repo, err := image.ParseName(uri)
	if err != nil {
		return image.Name{}, errors.Wrapf(err, "parsing repository URI for %q", name)
	}
	level.Debug(r.logger).Log("repository", name, "uri", repo)
	return repo, nil
}

// ImageExists asks for exactly the one tag; ECR answers a missing
// tag with an error rather than an empty result.
func (r *ECR) ImageExists(ctx context.Context, repo image.Name, tag string) (bool, error) {
	out, err := r.client.DescribeImagesWithContext(ctx, &ecr.DescribeImagesInput{
		RegistryId:     registryID(repo.Domain),
		RepositoryName: aws.String(repo.Image),
		ImageIds:       []*ecr.ImageIdentifier{{ImageTag: aws.String(tag)}},
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == ecr.ErrCodeImageNotFoundException {
			return false, nil
		}
		return false, errors.Wrapf(classify(err), "looking up %s", repo.ToRef(tag))
	}
	return len(out.ImageDetails) > 0, nil
}

// Images pages through the tagged images in the repository. An image
// with several tags gives an entry for each.
func (r *ECR) Images(ctx context.Context, repo image.Name) ([]image.Info, error) {
	var infos []image.Info
	input := &ecr.DescribeImagesInput{
		RegistryId:     registryID(repo.Domain),
		RepositoryName: aws.String(repo.Image),
		Filter:         &ecr.DescribeImagesFilter{TagStatus: aws.String(ecr.TagStatusTagged)},
	}
	err := r.client.DescribeImagesPagesWithContext(ctx, input, func(page *ecr.DescribeImagesOutput, lastPage bool) bool {
		for _, detail := range page.ImageDetails {
			for _, tag := range detail.ImageTags {
				infos = append(infos, image.Info{
					ID:        repo.ToRef(aws.StringValue(tag)),
					Digest:    aws.StringValue(detail.ImageDigest),
					PushedAt:  aws.TimeValue(detail.ImagePushedAt),
					SizeBytes: aws.Int64Value(detail.ImageSizeInBytes),
				})
			}
		}
		return true
	})
	if err != nil {
		return nil, errors.Wrapf(classify(err), "listing images in %s", repo)
	}
	level.Debug(r.logger).Log("repository", repo, "images", len(infos))
	return infos, nil
}

// classify gives ECR errors a kind where one applies, keeping the API
// error as the cause.
func classify(err error) error {
	aerr, ok := err.(awserr.Error)
	if !ok {
		return err
	}
	switch aerr.Code() {
	case ecr.ErrCodeRepositoryNotFoundException:
		return deployerr.WithKind(ErrRepositoryNotFound, err)
	case "AccessDeniedException", "UnrecognizedClientException", "ExpiredTokenException":
		return deployerr.WithKind(deployerr.AccessDenied, err)
	}
	return err
}
