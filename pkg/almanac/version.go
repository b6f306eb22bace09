package almanac

const Version = "0.1.0"
