package config

import (
	"fmt"
	"os"
)

const exampleConfig = `# cxxpack configuration
packages:
  - url: https://github.com/AI-Infra-Team/boost_full
    revision: main
    cxx_standard: 17
    build_type: Release
    defines:
      - {key: BUILD_STATIC_LIBS, value: "ON"}
      - {key: BUILD_SHARED_LIBS, value: "OFF"}
    custom_command: "./bootstrap.sh && ./b2 install --prefix={install_prefix} --with-system --with-filesystem --with-thread -j{cpu_count}"

  - url: https://github.com/protocolbuffers/protobuf
    revision: v3.21.12
    cxx_standard: 17
    build_type: Release
    cmake_name: Protobuf
    submodules: true
    defines:
      - {key: BUILD_SHARED_LIBS, value: "OFF"}
      - {key: protobuf_BUILD_TESTS, value: "OFF"}

  - url: https://github.com/grpc/grpc
    revision: v1.50.2
    cxx_standard: 17
    dependencies: [protobuf]
    build_type: Release
    cmake_name: gRPC
    submodules: true
    defines:
      - {key: BUILD_SHARED_LIBS, value: "OFF"}
      - {key: gRPC_BUILD_TESTS, value: "OFF"}
      - {key: gRPC_SSL_PROVIDER, value: "package"}

system_packages:
  - systems: [ubuntu20.04, ubuntu22.04]
    package_manager: apt
    packages: [build-essential, cmake, git, pkg-config, libssl-dev, zlib1g-dev]
  - systems: [manylinux_2014]
    package_manager: yum
    packages: [gcc, gcc-c++, make, cmake3, git, openssl-devel, zlib-devel]

matrix:
  cells:
    - {system: ubuntu20.04, arch: amd64}
    - {system: ubuntu22.04, arch: amd64}
    - {system: manylinux_2014, arch: amd64}
    - {system: manylinux_2014, arch: arm64}

build:
  max_retries: 2
  retry_backoff: fixed
  retry_initial_delay: 5s

logging:
  level: info
  format: text

metrics:
  enabled: false

output:
  directory: ./output
  logs_directory: ./output_logs
`

// Init creates a new configuration file with example content
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
