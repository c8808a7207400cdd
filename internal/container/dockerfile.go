package container

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/cxxpack/internal/config"
)

// installBatchSize bounds packages per RUN line to keep layers retryable and
// the command line short.
const installBatchSize = 10

// defaultSystemPackages is the fallback toolchain set for systems with no
// system_packages entry in the config.
var defaultSystemPackages = config.SystemPackages{
	PackageManager: "apt",
	Packages:       []string{"build-essential", "cmake", "git", "ca-certificates", "pkg-config"},
}

// RenderDockerfile produces the image build context for one matrix cell: the
// cell's base image plus the prerequisite system packages. The cxxpack binary
// and config are bind-mounted at run time, so the image stays config-agnostic
// apart from the baked-in default command.
func RenderDockerfile(cell config.Cell, sp *config.SystemPackages) (string, error) {
	base, err := cell.BaseImage()
	if err != nil {
		return "", err
	}
	if sp == nil {
		sp = &defaultSystemPackages
	}

	var b strings.Builder
	fmt.Fprintf(&b, "FROM %s\n\n", base)

	switch sp.PackageManager {
	case "apt", "":
		b.WriteString("ENV DEBIAN_FRONTEND=noninteractive\n\n")
		b.WriteString("RUN apt-get update\n")
		writeInstallBatches(&b, "apt-get install -y", sp.Packages)
		b.WriteString("RUN rm -rf /var/lib/apt/lists/*\n")
	case "yum":
		b.WriteString("RUN yum update -y\n")
		writeInstallBatches(&b, "yum install -y", sp.Packages)
		b.WriteString("RUN yum clean all\n")
	case "apk":
		b.WriteString("RUN apk update\n")
		writeInstallBatches(&b, "apk add", sp.Packages)
		b.WriteString("RUN rm -rf /var/cache/apk/*\n")
	default:
		return "", fmt.Errorf("unknown package manager %q for system %s", sp.PackageManager, cell.System)
	}

	b.WriteString("\nWORKDIR /cxxpack\n\n")
	fmt.Fprintf(&b, "CMD [\"/usr/local/bin/cxxpack\", \"build\", \"--config\", \"/cxxpack/cxxpack.yaml\", \"--system\", %q, \"--arch\", %q]\n",
		cell.System, cell.Arch)
	return b.String(), nil
}

func writeInstallBatches(b *strings.Builder, installCmd string, packages []string) {
	for i := 0; i < len(packages); i += installBatchSize {
		end := i + installBatchSize
		if end > len(packages) {
			end = len(packages)
		}
		fmt.Fprintf(b, "RUN %s %s\n", installCmd, strings.Join(packages[i:end], " "))
	}
}
